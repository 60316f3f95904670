package protocol

// Factory constructors for the request kinds the coordinator sends.

func NewPing(source, target string) *Message {
	return New(TypePing, source, target, nil)
}

// NewRegister announces a node to the coordinator. The record is the
// node's serialized descriptor.
func NewRegister(source string, record map[string]any) *Message {
	return New(TypeRegister, source, "", map[string]any{"node": record})
}

func NewTaskDispatch(source, target, taskID, taskType string, input map[string]any) *Message {
	return New(TypeTaskDispatch, source, target, map[string]any{
		"task_id":   taskID,
		"task_type": taskType,
		"input":     input,
	})
}

func NewInferenceRequest(source, target, prompt, model string) *Message {
	p := map[string]any{"prompt": prompt}
	if model != "" {
		p["model"] = model
	}
	return New(TypeInferenceReq, source, target, p)
}

func NewMemoryPush(source, target string, entries []map[string]any) *Message {
	return New(TypeMemoryPush, source, target, map[string]any{"entries": entries})
}

func NewVoiceTranscribeRequest(source, target, audioB64, format string) *Message {
	return New(TypeVoiceReq, source, target, map[string]any{
		"audio":  audioB64,
		"format": format,
	})
}

func NewSkillInvoke(source, target, skill string, args map[string]any) *Message {
	if args == nil {
		args = map[string]any{}
	}
	return New(TypeSkillInvoke, source, target, map[string]any{
		"skill": skill,
		"args":  args,
	})
}

func NewGatewayMessage(source, target, platform, recipient, text string) *Message {
	return New(TypeGatewayMessage, source, target, map[string]any{
		"platform":  platform,
		"recipient": recipient,
		"text":      text,
	})
}
