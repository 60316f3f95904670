// Package protocol defines the JSON envelope exchanged between the
// coordinator and worker nodes. It is pure: no network I/O, no shared
// state.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is stamped on every outgoing message.
const Version = "1.0"

type MessageType string

const (
	TypePing        MessageType = "ping"
	TypePong        MessageType = "pong"
	TypeRegister    MessageType = "register"
	TypeRegisterAck MessageType = "register_ack"
	TypeHeartbeat   MessageType = "heartbeat"
	TypeStatusReq   MessageType = "status_request"
	TypeStatusResp  MessageType = "status_response"

	TypeTaskDispatch MessageType = "task_dispatch"
	TypeTaskResult   MessageType = "task_result"
	TypeTaskCancel   MessageType = "task_cancel"

	TypeInferenceReq  MessageType = "inference_request"
	TypeInferenceResp MessageType = "inference_response"

	TypeMemoryPush MessageType = "memory_push"
	TypeMemoryPull MessageType = "memory_pull"
	TypeMemoryAck  MessageType = "memory_ack"

	TypeGatewayMessage MessageType = "gateway_message"
	TypeGatewayRelay   MessageType = "gateway_relay"

	TypeSkillInvoke   MessageType = "skill_invoke"
	TypeSkillResult   MessageType = "skill_result"
	TypeSkillListReq  MessageType = "skill_list_request"
	TypeSkillListResp MessageType = "skill_list_response"

	TypeVoiceReq  MessageType = "voice_transcribe_request"
	TypeVoiceResp MessageType = "voice_transcribe_response"

	TypeTopology   MessageType = "topology"
	TypeDeregister MessageType = "deregister"
)

var knownTypes = map[MessageType]bool{
	TypePing: true, TypePong: true,
	TypeRegister: true, TypeRegisterAck: true,
	TypeHeartbeat: true,
	TypeStatusReq: true, TypeStatusResp: true,
	TypeTaskDispatch: true, TypeTaskResult: true, TypeTaskCancel: true,
	TypeInferenceReq: true, TypeInferenceResp: true,
	TypeMemoryPush: true, TypeMemoryPull: true, TypeMemoryAck: true,
	TypeGatewayMessage: true, TypeGatewayRelay: true,
	TypeSkillInvoke: true, TypeSkillResult: true,
	TypeSkillListReq: true, TypeSkillListResp: true,
	TypeVoiceReq: true, TypeVoiceResp: true,
	TypeTopology: true, TypeDeregister: true,
}

// Valid reports whether t is a recognized message type.
func (t MessageType) Valid() bool { return knownTypes[t] }

// Message is the envelope for a single coordinator/node exchange.
// TargetNodeID is empty for broadcast or unaddressed messages;
// CorrelationID pairs a response with its request. Both serialize as
// explicit null when empty so every key is present on the wire.
type Message struct {
	ID            string
	Type          MessageType
	SourceNodeID  string
	TargetNodeID  string
	Timestamp     time.Time
	Payload       map[string]any
	CorrelationID string
	Version       string
}

// wireMessage is the exact on-wire shape. Nullable fields are pointers
// so the keys are always emitted.
type wireMessage struct {
	ID            string         `json:"message_id"`
	Type          MessageType    `json:"type"`
	SourceNodeID  string         `json:"source_node_id"`
	TargetNodeID  *string        `json:"target_node_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload"`
	CorrelationID *string        `json:"correlation_id"`
	Version       string         `json:"protocol_version"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:           m.ID,
		Type:         m.Type,
		SourceNodeID: m.SourceNodeID,
		Timestamp:    m.Timestamp,
		Payload:      m.Payload,
		Version:      m.Version,
	}
	if m.TargetNodeID != "" {
		w.TargetNodeID = &m.TargetNodeID
	}
	if m.CorrelationID != "" {
		w.CorrelationID = &m.CorrelationID
	}
	return json.Marshal(w)
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.ID = w.ID
	m.Type = w.Type
	m.SourceNodeID = w.SourceNodeID
	m.Timestamp = w.Timestamp
	m.Payload = w.Payload
	m.Version = w.Version
	if w.TargetNodeID != nil {
		m.TargetNodeID = *w.TargetNodeID
	}
	if w.CorrelationID != nil {
		m.CorrelationID = *w.CorrelationID
	}
	return nil
}

// New builds an envelope with a fresh id and the current timestamp.
func New(t MessageType, source, target string, payload map[string]any) *Message {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Message{
		ID:           uuid.New().String(),
		Type:         t,
		SourceNodeID: source,
		TargetNodeID: target,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
		Version:      Version,
	}
}

// Reply builds a response envelope correlated to m.
func (m *Message) Reply(t MessageType, source string, payload map[string]any) *Message {
	r := New(t, source, m.SourceNodeID, payload)
	r.CorrelationID = m.ID
	return r
}

func (m *Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// Unmarshal decodes an envelope. An unrecognized type is a hard error,
// never a silent default. A missing id or timestamp is replaced with a
// fresh one.
func Unmarshal(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if !m.Type.Valid() {
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Payload == nil {
		m.Payload = map[string]any{}
	}
	return &m, nil
}
