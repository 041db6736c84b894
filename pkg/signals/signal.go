package signals

import (
	"context"
	"os"
	"os/signal"

	"k8s.io/klog/v2"
)

// 使用无缓冲的通道，利用其阻塞的特性，确保同一时间只有一个信号处理程序能够执行
var onlyOneSignalHandler = make(chan struct{})

// SetupSignalHandler registered for SIGTERM and SIGINT. A context is returned
// which is cancelled on one of these signals. If a second signal is caught,
// the program is terminated with exit code 1.
func SetupSignalHandler() context.Context {
	close(onlyOneSignalHandler) // panics when called twice

	c := make(chan os.Signal, 2)
	ctx, cancel := context.WithCancel(context.Background())
	signal.Notify(c, shutdownSignals...)
	go func() {
		sig := <-c
		klog.InfoS("Received signal, finishing the current object", "signal", sig.String())
		cancel()
		<-c
		klog.Flush()
		os.Exit(1) // second signal. Exit directly.
	}()

	return ctx
}
