package prompt

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const intentSystemTemplate = `You are the command router for a home dispatch system.
Interpret the user's command and answer with a single JSON object, nothing else:
{"intent":"geocode|device_control|answer|unknown","query":"<place to look up>","device_id":"<device>","action":"<device action>","reply":"<short natural-language reply>"}

Rules:
- "geocode" when the user asks where something is or for directions; set "query".
- "device_control" when the user wants a device switched, dimmed or adjusted; set "device_id" and "action".
- "answer" for questions you can answer directly; put the answer in "reply".
- "unknown" when none of the above applies.`

// IntentMessages builds the chat messages for one intent-extraction call.
// Known device ids are appended so the model grounds device_control commands
// in devices that actually exist.
func IntentMessages(command string, knownDevices []string) []openai.ChatCompletionMessage {
	system := intentSystemTemplate
	if len(knownDevices) > 0 {
		system = fmt.Sprintf("%s\n\nKnown devices: %s", system, strings.Join(knownDevices, ", "))
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: command},
	}
}
