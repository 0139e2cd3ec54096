package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/LouYuanbo1/tableharvester/internal/domain/entity"
	"github.com/LouYuanbo1/tableharvester/internal/service/runner"
)

func main() {
	// SIGINT/SIGTERM cancel the run; the browser is still torn down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	// Pipeline failures were already logged with their kind; anything else
	// happened before a logger existed.
	switch entity.KindOf(err) {
	case "", entity.KindConfig:
		fmt.Fprintln(stderr, "tableharvester:", err)
	}
	return runner.ExitCode(err)
}
