package main

import (
	"context"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"dupsync/cmd"
	"dupsync/internal/config"
	"dupsync/internal/events"
	"dupsync/internal/util"

	gspt "github.com/erikdubbelboer/gspt"

	"golang.org/x/term"
)

// truncateToBytes truncates s to at most max bytes without splitting UTF-8 runes.
func truncateToBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	var b []byte
	for _, r := range s {
		rb := []byte(string(r))
		if len(b)+len(rb) > max {
			break
		}
		b = append(b, rb...)
	}
	if len(b) == 0 {
		return s[:max]
	}
	return string(b)
}

func main() {
	if err := os.MkdirAll(".dupsync/logs", 0755); err != nil {
		log.Fatalf("failed to create .dupsync/logs directory: %v", err)
	}

	f, err := os.OpenFile(".dupsync/logs/dupsync.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Process title preference order: project_name from dupsync.yaml,
	// then PROC_TITLE env var, then a fixed default.
	var procTitle string
	if config.ConfigExists() {
		if cfg, err := config.Load(); err == nil && cfg.ProjectName != "" {
			procTitle = cfg.ProjectName
		}
	}
	if procTitle == "" {
		if t := os.Getenv("PROC_TITLE"); t != "" {
			procTitle = t
		} else {
			procTitle = "dupsync"
		}
	}
	procTitle = strings.Join(strings.Fields(procTitle), "-")
	procTitle = truncateToBytes(procTitle, 15)
	gspt.SetProcTitle(procTitle)

	var origState *term.State
	if fi, _ := os.Stdin.Stat(); (fi.Mode() & os.ModeCharDevice) != 0 {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	forceExit := func(code int) {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
		os.Exit(code)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	done := make(chan struct{})
	shutdown := make(chan struct{})

	events.GlobalBus.Subscribe(events.EventShutdownRequested, func(reason string) {
		log.Printf("shutdown requested from component: %s\n", reason)
		cancel()
		close(shutdown)
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cmd.Root().ExecuteContext(ctx)
		close(done)
	}()

waitLoop:
	for {
		select {
		case <-shutdown:
			select {
			case <-done:
				log.Println("goroutine exited cleanly after component shutdown")
				break waitLoop
			case <-time.After(5 * time.Second):
				log.Println("timeout waiting for goroutine after component shutdown, forcing exit")
				forceExit(1)
			}
		case <-done:
			log.Println("goroutine finished; exiting.")
			util.Default.ClearLine()
			break waitLoop
		}
	}

	wg.Wait()

	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}
}
