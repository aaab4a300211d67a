package rcon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Packet types of the Source RCON protocol. The auth response and the exec
// command share the same numeric value; direction disambiguates them.
const (
	typeResponseValue int32 = 0
	typeExecCommand   int32 = 2
	typeAuthResponse  int32 = 2
	typeAuth          int32 = 3
)

const (
	// headerSize covers the id and type fields.
	headerSize = 8
	// trailerSize covers the body terminator and the empty string terminator.
	trailerSize = 2
	// maxRequestBody is the largest body a server is guaranteed to accept.
	maxRequestBody = 4096 - headerSize - trailerSize
	// maxResponseSize bounds the size field read from the wire.
	maxResponseSize = 1 << 20
)

// authFailedID is the request id a server answers with when the password is wrong.
const authFailedID int32 = -1

type packet struct {
	ID   int32
	Type int32
	Body string
}

func writePacket(w io.Writer, p packet) error {
	if len(p.Body) > maxRequestBody {
		return &ProtocolError{Reason: fmt.Sprintf("body of %d bytes exceeds %d", len(p.Body), maxRequestBody)}
	}
	size := int32(headerSize + len(p.Body) + trailerSize) // #nosec G115 -- bounded above
	buf := bytes.NewBuffer(make([]byte, 0, 4+size))
	_ = binary.Write(buf, binary.LittleEndian, size)
	_ = binary.Write(buf, binary.LittleEndian, p.ID)
	_ = binary.Write(buf, binary.LittleEndian, p.Type)
	buf.WriteString(p.Body)
	buf.Write([]byte{0, 0})
	_, err := w.Write(buf.Bytes())
	return err
}

// readPacket reads one frame. I/O failures are returned as-is; malformed
// frames are returned as *ProtocolError.
func readPacket(r io.Reader) (packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return packet{}, err
	}
	if size < headerSize+trailerSize || size > maxResponseSize {
		return packet{}, &ProtocolError{Reason: fmt.Sprintf("invalid packet size %d", size)}
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return packet{}, err
	}
	p := packet{
		ID:   int32(binary.LittleEndian.Uint32(payload[0:4])), // #nosec G115 -- wire format is signed
		Type: int32(binary.LittleEndian.Uint32(payload[4:8])), // #nosec G115 -- wire format is signed
	}
	body := payload[headerSize:]
	// Terminators are required by the protocol but some servers send only one.
	body = bytes.TrimRight(body, "\x00")
	p.Body = string(body)
	return p, nil
}
