package channel

import (
	"errors"
	"io"
	"net"
	"strconv"
)

// endpoint resolves the local bind address and remote destination for a
// UDP carrier. Adapted from a FLUTE-multicast-specific endpoint into a
// plain point-to-point pair: the sender side only needs DestAddr, the
// receiver side only needs BindAddr.
type endpoint struct {
	// SourceAddress is the local address to bind, e.g. "0.0.0.0" or a
	// specific interface IP. Empty lets the kernel choose.
	SourceAddress string

	// DestinationAddress is the remote host the sender writes to.
	DestinationAddress string

	Port uint16
}

// BindAddr returns the string suitable for net.ListenPacket("udp", ...).
func (e endpoint) BindAddr() string {
	return net.JoinHostPort(e.SourceAddress, strconv.Itoa(int(e.Port)))
}

// DestAddr returns the "host:port" string suitable for net.ResolveUDPAddr.
func (e endpoint) DestAddr() string {
	return net.JoinHostPort(e.DestinationAddress, strconv.Itoa(int(e.Port)))
}

func (e endpoint) resolveDest() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", e.DestAddr())
}

// maxPacketSize bounds a single UDP read; any frame larger than this is
// not something this codec would ever produce.
const maxPacketSize = 65535

// UDPChannel carries packets over a UDP socket. A channel constructed
// with NewUDPSender only writes; one constructed with NewUDPReceiver
// only reads. Both satisfy Channel.
type UDPChannel struct {
	conn   *net.UDPConn
	dest   *net.UDPAddr
	sender bool
	closed bool
}

// NewUDPSender opens a UDP channel that sends to dest:port. src, if
// non-empty, pins the local interface to bind to.
func NewUDPSender(src, dest string, port uint16) (*UDPChannel, error) {
	ep := endpoint{SourceAddress: src, DestinationAddress: dest, Port: port}
	addr, err := ep.resolveDest()
	if err != nil {
		return nil, err
	}
	var local *net.UDPAddr
	if src != "" {
		local, err = net.ResolveUDPAddr("udp", net.JoinHostPort(src, "0"))
		if err != nil {
			return nil, err
		}
	}
	conn, err := net.DialUDP("udp", local, addr)
	if err != nil {
		return nil, err
	}
	return &UDPChannel{conn: conn, dest: addr, sender: true}, nil
}

// NewUDPReceiver opens a UDP channel bound to bindAddr:port, ready to
// receive packets sent to it.
func NewUDPReceiver(bindAddr string, port uint16) (*UDPChannel, error) {
	ep := endpoint{SourceAddress: bindAddr, Port: port}
	addr, err := net.ResolveUDPAddr("udp", ep.BindAddr())
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPChannel{conn: conn}, nil
}

// Send writes packet as a single UDP datagram. Calling Send on a
// receiver-mode channel is a programmer error.
func (c *UDPChannel) Send(packet []byte) error {
	if c.closed {
		return ErrClosed
	}
	if !c.sender {
		return errors.New("channel: Send called on a receiver-mode UDPChannel")
	}
	_, err := c.conn.Write(packet)
	return err
}

// Receive blocks for the next datagram. UDP already drops, reorders,
// and duplicates on its own, which is exactly the shape §6.4 asks a
// carrier to have.
func (c *UDPChannel) Receive() ([]byte, error) {
	if c.sender {
		return nil, errors.New("channel: Receive called on a sender-mode UDPChannel")
	}
	buf := make([]byte, maxPacketSize)
	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf[:n], nil
}

func (c *UDPChannel) Close() error {
	c.closed = true
	return c.conn.Close()
}
