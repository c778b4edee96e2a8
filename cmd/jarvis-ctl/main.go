package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/spf13/pflag"

	"jarvis/internal/cards"
	"jarvis/internal/config"
	"jarvis/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", "", "Control socket path (overrides env)")
	cli.Parse()

	args := cli.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	path := *socket
	if path == "" {
		path = config.Load().Socket
	}

	var req ipc.Request
	switch args[0] {
	case "press", "release", "status":
		req = ipc.Request{Cmd: args[0]}
	case "say":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "say needs a message")
			os.Exit(2)
		}
		req = ipc.Request{Cmd: "say", Text: strings.Join(args[1:], " ")}
	default:
		usage()
		os.Exit(2)
	}

	resp, err := ipc.Send(path, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jarvisd not running:", err)
		os.Exit(1)
	}

	if !resp.OK {
		fmt.Fprintln(os.Stderr, "error:", resp.Error)
		os.Exit(1)
	}

	show(resp)
}

func show(resp ipc.Response) {
	fmt.Println("state:", resp.State)
	if resp.Transcript != "" {
		fmt.Println("you:  ", resp.Transcript)
	}
	if resp.Reply != "" {
		fmt.Println("jarvis:", resp.Reply)
	}
	if resp.LastError != "" {
		fmt.Println("last error:", resp.LastError)
	}
	if resp.Card != nil {
		fmt.Println(cards.Render(resp.Card))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jarvis-ctl [-s socket] press|release|status|say <message>")
}
