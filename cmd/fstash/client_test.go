package main

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestIsConnRefused(t *testing.T) {
	refused := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}
	if !isConnRefused(refused) {
		t.Fatal("expected connection-refused to match")
	}

	// Errors that will not clear by waiting must not keep the poll alive.
	unreachable := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH),
	}
	if isConnRefused(unreachable) {
		t.Fatal("host-unreachable must not match")
	}
	if isConnRefused(context.DeadlineExceeded) {
		t.Fatal("timeout must not match")
	}
	if isConnRefused(errors.New("http: server gave bad response")) {
		t.Fatal("protocol error must not match")
	}
}
