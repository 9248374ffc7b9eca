package llm

import _ "embed"

var (
	//go:embed prompts/ocr.txt
	promptOCR string
	//go:embed prompts/extract.txt
	promptExtract string
	//go:embed prompts/verify.txt
	promptVerify string
	//go:embed prompts/bias.txt
	promptBias string
	//go:embed prompts/chat.txt
	promptChat string
)

const (
	PromptOCR     = "ocr"
	PromptExtract = "extract"
	PromptVerify  = "verify"
	PromptBias    = "bias"
	PromptChat    = "chat"
)

// SystemPrompt returns the system prompt for a task and whether the name was
// recognized.
func SystemPrompt(name string) (string, bool) {
	switch name {
	case PromptOCR:
		return promptOCR, true
	case PromptExtract:
		return promptExtract, true
	case PromptVerify:
		return promptVerify, true
	case PromptBias:
		return promptBias, true
	case PromptChat:
		return promptChat, true
	default:
		return "", false
	}
}

// MustSystemPrompt is SystemPrompt for names known at compile time.
func MustSystemPrompt(name string) string {
	p, ok := SystemPrompt(name)
	if !ok {
		panic("llm: unknown prompt " + name)
	}
	return p
}
