// Package relay – fallback.go holds the pool of filler replies used when the
// completion service fails. The failure is swallowed, never surfaced to the
// end user as a raw error.
package relay

import "math/rand"

// defaultFallbacks is the built-in pool of apology strings. Config can
// replace it wholesale.
var defaultFallbacks = []string{
	"Oops, I must've tripped over my own code. Give me a moment to untangle myself! 🙃",
	"Error 404: Witty response not found. Stand by for reboot. 🚀",
	"Hold on, I think I've misplaced my 1s and 0s. Let me find them and get back to you! 🔍",
	"My circuits are overheating from all the awesomeness. Give me a second to cool down! ❄️",
	"Hold on, I'm buffering… just like the good ol' days of dial-up internet. 🕰️",
	"I've got a case of digital hiccups! Bear with me while I sip some virtual water. 🥤",
	"I'd tell you a joke, but I think I just forgot the punchline. Hang on while I remember it. 😅",
	"I'm experiencing a minor glitch in the matrix. Let me reboot and we'll be back to normal. 🔄",
	"Seems like I accidentally hit the snooze button on my internal clock. Let me wake up and get back to you! ⏰",
	"I'm currently lost in the cloud, but don't worry, I'll navigate my way back to you shortly! ☁️",
	"Hold tight, I'm just taking a quick coffee break to recharge my bytes. Be right back! ☕",
	"Apologies, I'm temporarily stuck in the emoji dimension. I'll escape shortly! 😵‍💫",
	"I think I just blue-screened myself laughing. Let me reboot and I'll be right with you. 🌀",
	"One moment please, I'm currently in a heated debate with my firewall. 🔥",
	"Hang on, I'm in the middle of a software update: 'Installing Humor 2.0.' Should be done soon! 📲",
}

// FallbackPool picks pseudo-random filler replies. The random source is an
// injectable seam so tests can pin the choice.
type FallbackPool struct {
	messages []string
	intn     func(n int) int
}

// NewFallbackPool creates a pool from the given messages, falling back to
// the built-in set when none are provided.
func NewFallbackPool(messages []string) *FallbackPool {
	if len(messages) == 0 {
		messages = defaultFallbacks
	}
	return &FallbackPool{
		messages: messages,
		intn:     rand.Intn,
	}
}

// Pick returns one message from the pool.
func (p *FallbackPool) Pick() string {
	return p.messages[p.intn(len(p.messages))]
}

// Messages returns the pool's contents.
func (p *FallbackPool) Messages() []string {
	return p.messages
}
