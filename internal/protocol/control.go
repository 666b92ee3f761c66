package protocol

import "github.com/golang/protobuf/proto"

// ConnectionType distinguishes the address family the client resolved the
// remote host to, so the server binds its UDP socket on the same family.
type ConnectionType int32

const (
	ConnectionType_IPV4 ConnectionType = 0
	ConnectionType_IPV6 ConnectionType = 1
)

// ClientMessage is the single message the client sends over the control
// channel before dialing QUIC.
type ClientMessage struct {
	ClientCert []byte         `protobuf:"bytes,1,opt,name=client_cert,json=clientCert,proto3" json:"client_cert,omitempty"`
	ConnType   ConnectionType `protobuf:"varint,2,opt,name=conn_type,json=connType,proto3,enum=qcp.protocol.ConnectionType" json:"conn_type,omitempty"`
}

func (m *ClientMessage) Reset()         { *m = ClientMessage{} }
func (m *ClientMessage) String() string { return proto.CompactTextString(m) }
func (*ClientMessage) ProtoMessage()    {}

// ServerMessage is the single message the server sends back over the
// control channel, after binding its UDP socket and minting its cert.
type ServerMessage struct {
	Port          uint32 `protobuf:"varint,1,opt,name=port,proto3" json:"port,omitempty"`
	ServerCert    []byte `protobuf:"bytes,2,opt,name=server_cert,json=serverCert,proto3" json:"server_cert,omitempty"`
	ServerCertCn  string `protobuf:"bytes,3,opt,name=server_cert_cn,json=serverCertCn,proto3" json:"server_cert_cn,omitempty"`
	Warning       string `protobuf:"bytes,4,opt,name=warning,proto3" json:"warning,omitempty"`
	BandwidthInfo string `protobuf:"bytes,5,opt,name=bandwidth_info,json=bandwidthInfo,proto3" json:"bandwidth_info,omitempty"`
}

func (m *ServerMessage) Reset()         { *m = ServerMessage{} }
func (m *ServerMessage) String() string { return proto.CompactTextString(m) }
func (*ServerMessage) ProtoMessage()    {}

// ClosedownReport carries the server's final QUIC endpoint counters back
// to the client at the end of a session.
type ClosedownReport struct {
	FinalCongestionWindow uint64 `protobuf:"varint,1,opt,name=final_congestion_window,json=finalCongestionWindow,proto3" json:"final_congestion_window,omitempty"`
	SentPackets           uint64 `protobuf:"varint,2,opt,name=sent_packets,json=sentPackets,proto3" json:"sent_packets,omitempty"`
	LostPackets           uint64 `protobuf:"varint,3,opt,name=lost_packets,json=lostPackets,proto3" json:"lost_packets,omitempty"`
	LostBytes             uint64 `protobuf:"varint,4,opt,name=lost_bytes,json=lostBytes,proto3" json:"lost_bytes,omitempty"`
	CongestionEvents      uint64 `protobuf:"varint,5,opt,name=congestion_events,json=congestionEvents,proto3" json:"congestion_events,omitempty"`
	BlackHoleDetections   uint64 `protobuf:"varint,6,opt,name=black_hole_detections,json=blackHoleDetections,proto3" json:"black_hole_detections,omitempty"`
	SentBytes             uint64 `protobuf:"varint,7,opt,name=sent_bytes,json=sentBytes,proto3" json:"sent_bytes,omitempty"`
}

func (m *ClosedownReport) Reset()         { *m = ClosedownReport{} }
func (m *ClosedownReport) String() string { return proto.CompactTextString(m) }
func (*ClosedownReport) ProtoMessage()    {}
