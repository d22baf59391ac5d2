package util

import (
	"net"
	"testing"
)

func TestBrowserCommands(t *testing.T) {
	t.Parallel()

	for _, goos := range []string{"windows", "darwin", "linux"} {
		cmds := browserCommands(goos, "http://localhost:1")
		if len(cmds) == 0 {
			t.Fatalf("%s: no commands", goos)
		}
		for _, args := range cmds {
			if args[len(args)-1] != "http://localhost:1" {
				t.Fatalf("%s: url must be the last argument: %v", goos, args)
			}
		}
	}
}

func TestFindAvailablePort_SkipsBusyPort(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	busy := ln.Addr().(*net.TCPAddr).Port

	port, err := FindAvailablePort(busy, 20)
	if err != nil {
		t.Fatalf("FindAvailablePort: %v", err)
	}
	if port == busy {
		t.Fatalf("got busy port %d", busy)
	}
	if port < busy || port >= busy+20 {
		t.Fatalf("port %d out of range", port)
	}
}
