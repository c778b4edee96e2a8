// Package notify plays short earcons so the user knows the microphone
// is hot without looking at a screen.
package notify

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
)

const (
	cueRate = beep.SampleRate(44100)
	cueFreq = 880
)

// Cue plays a short confirmation tone and blocks until it finishes.
func Cue() error {
	tone, err := generators.SinTone(cueRate, cueFreq)
	if err != nil {
		return fmt.Errorf("generate tone: %w", err)
	}

	if err := speaker.Init(cueRate, cueRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(
		beep.Take(cueRate.N(120*time.Millisecond), tone),
		beep.Callback(func() { close(done) }),
	))
	<-done

	return nil
}
