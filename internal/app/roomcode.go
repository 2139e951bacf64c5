package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Room codes are typed by students, so look-alike characters are left out.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is used when no length is configured.
const DefaultCodeLength = 6

// CodeGenerator produces short human-typed room codes.
type CodeGenerator struct {
	mu     sync.Mutex
	rnd    *rand.Rand
	length int
}

func NewCodeGenerator(length int) *CodeGenerator {
	return NewCodeGeneratorWithSource(length, rand.NewSource(time.Now().UnixNano()))
}

// NewCodeGeneratorWithSource is used by tests for reproducible codes.
func NewCodeGeneratorWithSource(length int, src rand.Source) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{rnd: rand.New(src), length: length}
}

func (g *CodeGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		b.WriteByte(codeAlphabet[g.rnd.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode uppercases and trims a code typed by a user.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
