package broker

import (
	"net"
	"strconv"
	"testing"
	"time"
)

func TestManual(t *testing.T) {
	b := Manual("192.168.1.10", 8883)
	if b.Host != "192.168.1.10" || b.Port != 8883 {
		t.Errorf("Manual() = %s:%d", b.Host, b.Port)
	}
	if b.Method != "manual" {
		t.Errorf("Method = %q, want manual", b.Method)
	}
}

func TestManualDefaultsPort(t *testing.T) {
	b := Manual("broker.lan", 0)
	if b.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", b.Port, DefaultPort)
	}
}

func TestAddress(t *testing.T) {
	b := Broker{Host: "192.168.1.10", Port: 1883}
	if got := b.Address(); got != "192.168.1.10:1883" {
		t.Errorf("Address() = %q", got)
	}
}

func TestReachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	host, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	if !Reachable(host, port, time.Second) {
		t.Errorf("Reachable(%s:%d) = false, want true", host, port)
	}
}

func TestReachableClosedPort(t *testing.T) {
	// Grab a port then release it so nothing is listening there
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	listener.Close()

	if Reachable(host, port, 500*time.Millisecond) {
		t.Errorf("Reachable(%s:%d) = true for a closed port", host, port)
	}
}
