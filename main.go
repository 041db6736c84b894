package main

import (
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/ez-pie/ez-workspace/cli"
	"github.com/ez-pie/ez-workspace/pkg/signals"
)

func main() {
	// set up signals so we handle the shutdown signal gracefully
	ctx := signals.SetupSignalHandler()

	err := cli.Execute(ctx, os.Args[1:])
	klog.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
