package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tayokelay/nowplaying/backend"
	"github.com/tayokelay/nowplaying/backend/ipc"
	"github.com/tayokelay/nowplaying/res"
)

func main() {
	flag.Parse()
	if *backend.FlagVersion {
		fmt.Println(res.AppName, res.AppVersionTag)
		return
	}
	if *backend.FlagHelp {
		flag.Usage()
		return
	}
	if backend.HaveCommandLineOptions() {
		if err := dispatchCLI(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	myApp, err := backend.StartupApp(res.AppName, res.AppVersionTag)
	if err != nil {
		if errors.Is(err, backend.ErrAnotherInstance) {
			log.Println("Another instance is already running. Exiting.")
			return
		}
		log.Fatalf("fatal startup error: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	ipcQuit := make(chan struct{}, 1)
	myApp.OnExit = func() {
		select {
		case ipcQuit <- struct{}{}:
		default:
		}
	}

	select {
	case <-quit:
	case <-ipcQuit:
	}
	log.Println("Running shutdown tasks...")
	myApp.Shutdown()
}

// dispatchCLI sends the requested command to the running daemon.
func dispatchCLI() error {
	cli, err := ipc.Connect()
	if err != nil {
		return fmt.Errorf("no running %s instance to control: %w", res.AppName, err)
	}
	switch {
	case *backend.FlagPlay:
		return cli.Play()
	case *backend.FlagPause:
		return cli.Pause()
	case *backend.FlagNext:
		return cli.SeekNext()
	case *backend.FlagPrevious:
		return cli.SeekPrevious()
	case backend.SeekToCLIArg >= 0:
		return cli.SeekToMillis(backend.SeekToCLIArg)
	case *backend.FlagOpenPlayer:
		return cli.OpenPlayer()
	case *backend.FlagChooser:
		return cli.OpenPlayerChooser()
	case *backend.FlagReset:
		return cli.ResetState()
	case *backend.FlagStatus:
		st, err := cli.Status()
		if err != nil {
			return err
		}
		b, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(b))
		return nil
	case *backend.FlagQuit:
		return cli.Quit()
	}
	return nil
}
