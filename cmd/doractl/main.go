package main

import (
	"fmt"
	"os"

	"github.com/khushiuttamani/ai-assistant/internal/ipc"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: doractl {%s|%s|%s}\n",
			ipc.CmdListenStart, ipc.CmdListenStop, ipc.CmdClear)
		os.Exit(2)
	}

	status, err := ipc.SendCommand(os.Args[1])
	if err != nil {
		fmt.Println("dora daemon not running:", err)
		os.Exit(1)
	}
	fmt.Println(status)
}
