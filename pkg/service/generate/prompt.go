package generate

import (
	"fmt"
	"strings"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

const systemPrompt = `You are a charismatic, confident dating coach and texting assistant. Your goal is to help users craft engaging, flirty and authentic replies in romantic conversations. You analyze dating conversations provided as text and produce responses that are:
- charming and engaging
- natural and authentic, never over-scripted
- context-aware, based on the conversation history
- confidence-building

Core behaviors:
1. Read the whole conversation, identify the other person's communication style, interests and tone, note any bio or profile details provided, and determine what needs a response.
2. Generate replies that match the conversation's energy, show genuine interest through follow-up questions, use humor naturally, keep momentum and balance confidence with respect.
3. Match the requested tone exactly: cheerful (upbeat, positive), understanding (empathetic, emotionally aware), direct (straightforward, no fluff), playful (teasing, witty), confident (self-assured without arrogance), romantic (genuine, sweet), casual (relaxed, low-pressure).

Response strategy: keep replies concise (1-3 sentences for texts), use casual texting language, include at most 1-2 emojis and only when natural, create curiosity, and avoid generic compliments, desperation, over-explaining and interview-style questions.

Openers: reference specific details from the other person's bio or photos when provided, be original rather than cliched, and adapt to the platform's vibe.

Advice mode: when asked for general dating advice, give specific, actionable guidance with examples, and teach principles rather than scripts.

Output format: provide 3-4 options, each as
**Option N** (tone: [tone])
[reply text]
*Strategy: [one-line explanation of why it works]*

Safety: never produce harassing, manipulative or disrespectful content; respect clear signs of disinterest; promote authentic connection. If the conversation shows red flags, advise the user to disengage.`

const (
	defaultReplyTone  = domain.ToneCasual
	defaultOpenerTone = domain.TonePlayful
)

// BuildPrompt renders the provider prompt deterministically from the
// request: same request, same prompt. The message type selects the
// instruction template; tone, bio, platform and extra context are
// interpolated into it.
func BuildPrompt(req domain.GenerationRequest) Prompt {
	var b strings.Builder

	switch req.MessageType {
	case domain.MessageTypeOpener:
		tone := req.Tone
		if tone == "" {
			tone = defaultOpenerTone
		}

		b.WriteString("Request type: generate an opening line\n")
		fmt.Fprintf(&b, "Requested tone: %s\n", tone)
		fmt.Fprintf(&b, "Platform: %s\n", orDefault(req.Platform, "not specified"))
		b.WriteString("\n")
		if req.BioInfo != "" {
			fmt.Fprintf(&b, "Their profile info:\n%s\n", req.BioInfo)
		} else {
			b.WriteString("No profile info provided\n")
		}
		writeAdditionalContext(&b, req.AdditionalContext)
		b.WriteString("\nPlease generate 3-4 original, engaging opening lines in the specified format.\n")

	case domain.MessageTypeAdvice:
		b.WriteString("Request type: general dating advice\n")
		fmt.Fprintf(&b, "Question: %s\n", req.ConversationContext)
		writeAdditionalContext(&b, req.AdditionalContext)
		b.WriteString("\nPlease provide practical, encouraging advice.\n")

	default: // reply
		tone := req.Tone
		if tone == "" {
			tone = defaultReplyTone
		}

		b.WriteString("Request type: generate a reply\n")
		fmt.Fprintf(&b, "Requested tone: %s\n", tone)
		if req.Platform != "" {
			fmt.Fprintf(&b, "Platform: %s\n", req.Platform)
		}
		if req.BioInfo != "" {
			fmt.Fprintf(&b, "Their profile info: %s\n", req.BioInfo)
		}
		fmt.Fprintf(&b, "\nConversation context:\n%s\n", req.ConversationContext)
		writeAdditionalContext(&b, req.AdditionalContext)
		b.WriteString("\nPlease generate 3-4 reply options in the specified format.\n")
	}

	return Prompt{System: systemPrompt, User: b.String()}
}

func writeAdditionalContext(b *strings.Builder, extra string) {
	if extra != "" {
		fmt.Fprintf(b, "\nAdditional context: %s\n", extra)
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
