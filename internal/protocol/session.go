package protocol

import "github.com/golang/protobuf/proto"

// CommandKind selects between the two operations a session stream can
// carry. There is no third kind; a stream performs exactly one.
type CommandKind int32

const (
	CommandKind_GET CommandKind = 0
	CommandKind_PUT CommandKind = 1
)

// Command opens a session stream's operation. Filename must be a leaf
// name; any path separator is rejected before the filesystem is touched.
type Command struct {
	Kind     CommandKind `protobuf:"varint,1,opt,name=kind,proto3,enum=qcp.protocol.CommandKind" json:"kind,omitempty"`
	Filename string      `protobuf:"bytes,2,opt,name=filename,proto3" json:"filename,omitempty"`
}

func (m *Command) Reset()         { *m = Command{} }
func (m *Command) String() string { return proto.CompactTextString(m) }
func (*Command) ProtoMessage()    {}

// Status enumerates the outcomes a Response can report.
type Status int32

const (
	Status_OK                        Status = 0
	Status_FILE_NOT_FOUND            Status = 1
	Status_INCORRECT_PERMISSIONS     Status = 2
	Status_DIRECTORY_DOES_NOT_EXIST  Status = 3
	Status_IO_ERROR                  Status = 4
	Status_DISK_FULL                 Status = 5
	Status_NOT_YET_IMPLEMENTED       Status = 6
	Status_IS_A_DIRECTORY            Status = 7
)

// Response reports the outcome of a Command, or a PUT's final write
// disposition.
type Response struct {
	Status  Status `protobuf:"varint,1,opt,name=status,proto3,enum=qcp.protocol.Status" json:"status,omitempty"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Response) Reset()         { *m = Response{} }
func (m *Response) String() string { return proto.CompactTextString(m) }
func (*Response) ProtoMessage()    {}

// FileHeader precedes the raw file bytes on a successful transfer.
type FileHeader struct {
	Size     uint64 `protobuf:"varint,1,opt,name=size,proto3" json:"size,omitempty"`
	Filename string `protobuf:"bytes,2,opt,name=filename,proto3" json:"filename,omitempty"`
}

func (m *FileHeader) Reset()         { *m = FileHeader{} }
func (m *FileHeader) String() string { return proto.CompactTextString(m) }
func (*FileHeader) ProtoMessage()    {}

// FileTrailer closes the data portion of a stream. Empty today; reserved
// for a future checksum field. Decoders must not fail on unknown fields
// here, which proto3's unmarshal already guarantees.
type FileTrailer struct {
}

func (m *FileTrailer) Reset()         { *m = FileTrailer{} }
func (m *FileTrailer) String() string { return proto.CompactTextString(m) }
func (*FileTrailer) ProtoMessage()    {}

// TransferAbortInformation rides a QUIC datagram, not a stream, so the
// client learns a PUT's abort reason even if the stream reset races the
// final Response.
type TransferAbortInformation struct {
	Filename string `protobuf:"bytes,1,opt,name=filename,proto3" json:"filename,omitempty"`
	Status   Status `protobuf:"varint,2,opt,name=status,proto3,enum=qcp.protocol.Status" json:"status,omitempty"`
	Message  string `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *TransferAbortInformation) Reset()         { *m = TransferAbortInformation{} }
func (m *TransferAbortInformation) String() string { return proto.CompactTextString(m) }
func (*TransferAbortInformation) ProtoMessage()    {}
