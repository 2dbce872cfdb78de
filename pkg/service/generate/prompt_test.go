package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexbrdn/wingmate-api/pkg/domain"
)

func TestBuildPrompt_Deterministic(t *testing.T) {
	req := domain.GenerationRequest{
		ConversationContext: "them: hey\nyou: hi",
		MessageType:         domain.MessageTypeReply,
		Tone:                domain.ToneConfident,
		BioInfo:             "loves thai food",
		Platform:            "hinge",
		AdditionalContext:   "talking for two days",
	}

	assert.Equal(t, BuildPrompt(req), BuildPrompt(req))
}

func TestBuildPrompt_Reply(t *testing.T) {
	req := domain.GenerationRequest{
		ConversationContext: "them: what's your favorite trail?",
		MessageType:         domain.MessageTypeReply,
		Tone:                domain.ToneRomantic,
		BioInfo:             "avid hiker",
		Platform:            "tinder",
	}

	p := BuildPrompt(req)
	assert.NotEmpty(t, p.System)
	assert.Contains(t, p.User, "generate a reply")
	assert.Contains(t, p.User, "romantic")
	assert.Contains(t, p.User, "avid hiker")
	assert.Contains(t, p.User, "tinder")
	assert.Contains(t, p.User, "what's your favorite trail?")
}

func TestBuildPrompt_ReplyDefaultsToCasualTone(t *testing.T) {
	p := BuildPrompt(domain.GenerationRequest{
		ConversationContext: "them: hey",
		MessageType:         domain.MessageTypeReply,
	})
	assert.Contains(t, p.User, "Requested tone: casual")
}

func TestBuildPrompt_OpenerDefaultsToPlayfulTone(t *testing.T) {
	p := BuildPrompt(domain.GenerationRequest{
		ConversationContext: "n/a",
		MessageType:         domain.MessageTypeOpener,
		BioInfo:             "bio mentions climbing",
	})
	assert.Contains(t, p.User, "opening line")
	assert.Contains(t, p.User, "Requested tone: playful")
	assert.Contains(t, p.User, "bio mentions climbing")
}

func TestBuildPrompt_OpenerWithoutBio(t *testing.T) {
	p := BuildPrompt(domain.GenerationRequest{
		ConversationContext: "n/a",
		MessageType:         domain.MessageTypeOpener,
	})
	assert.Contains(t, p.User, "No profile info provided")
	assert.Contains(t, p.User, "Platform: not specified")
}

func TestBuildPrompt_Advice(t *testing.T) {
	p := BuildPrompt(domain.GenerationRequest{
		ConversationContext: "how do I keep a conversation going?",
		MessageType:         domain.MessageTypeAdvice,
		AdditionalContext:   "we matched a week ago",
	})
	assert.Contains(t, p.User, "general dating advice")
	assert.Contains(t, p.User, "how do I keep a conversation going?")
	assert.Contains(t, p.User, "we matched a week ago")
	assert.NotContains(t, p.User, "Requested tone", "advice requests ignore tone")
}

func TestBuildPrompt_SharedSystemPrompt(t *testing.T) {
	reply := BuildPrompt(domain.GenerationRequest{ConversationContext: "x", MessageType: domain.MessageTypeReply})
	opener := BuildPrompt(domain.GenerationRequest{ConversationContext: "x", MessageType: domain.MessageTypeOpener})
	assert.Equal(t, reply.System, opener.System)
}
