// recctl is a small diagnostic tool for Seagray recorders: list connected
// devices, query identity/clock/storage, dump the file listing, and pull a
// recording to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/seagrayinc/gorec/pkg/recorder"
)

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM, syscall.SIGINT,
	)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if os.Args[1] == "list" {
		if err := list(); err != nil {
			fatal(err)
		}
		return
	}

	devs, err := recorder.Enumerate()
	if err != nil {
		fatal(err)
	}
	if len(devs) == 0 {
		fatal(fmt.Errorf("no recorder connected"))
	}

	s, err := recorder.Connect(ctx, devs[0])
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	switch os.Args[1] {
	case "info":
		err = info(ctx, s)
	case "clock":
		err = clock(ctx, s)
	case "files":
		err = files(ctx, s)
	case "card":
		err = card(ctx, s)
	case "pull":
		if len(os.Args) < 3 {
			usage()
			os.Exit(2)
		}
		err = pull(ctx, s, os.Args[2])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: recctl {list|info|clock|files|card|pull <name>}")
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "recctl:", err)
	os.Exit(1)
}

func list() error {
	devs, err := recorder.Enumerate()
	if err != nil {
		return err
	}
	for _, d := range devs {
		fmt.Printf("%s\t%s\t%s\n", d.Model, d.Serial, d.Path)
	}
	return nil
}

func info(ctx context.Context, s *recorder.Session) error {
	di, err := s.DeviceInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("model: %s\nfirmware: %s\nserial: %s\n", di.Model, di.FirmwareVersion, di.Serial)
	return nil
}

func clock(ctx context.Context, s *recorder.Session) error {
	t, err := s.GetTime(ctx)
	if err != nil {
		return err
	}
	if t.IsZero() {
		fmt.Println("clock: not set")
		return nil
	}
	fmt.Println("clock:", t.Format("2006-01-02 15:04:05"))
	return nil
}

func files(ctx context.Context, s *recorder.Session) error {
	fds, err := s.ListFiles(ctx)
	if err != nil {
		return err
	}
	for _, fd := range fds {
		created := "-"
		if !fd.CreatedAt.IsZero() {
			created = fd.CreatedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s\t%d bytes\t%s\t%s\n", fd.Name, fd.Size, fd.Duration, created)
	}
	return nil
}

func card(ctx context.Context, s *recorder.Session) error {
	ci, err := s.CardInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("card: %d/%d MiB free, %s\n", ci.FreeMiB, ci.TotalMiB, ci.Filesystem)
	return nil
}

func pull(ctx context.Context, s *recorder.Session, name string) error {
	fds, err := s.ListFiles(ctx)
	if err != nil {
		return err
	}
	var target *recorder.FileDescriptor
	for i := range fds {
		if fds[i].Name == name {
			target = &fds[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no file %q on device", name)
	}

	out, err := os.Create(filepath.Base(name))
	if err != nil {
		return err
	}
	defer out.Close()

	token := recorder.NewCancelToken()
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	h, err := s.DownloadFile(ctx, *target, out,
		func(received, total uint64) {
			fmt.Printf("\r%d/%d bytes", received, total)
		}, token)
	if err != nil {
		return err
	}
	if err := h.Join(); err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf("\rpulled %s (%d bytes)\n", name, target.Size)
	return nil
}
