package llm

import "testing"

func TestParseProvider(t *testing.T) {
	for _, name := range []string{"Digital Ocean", "Ollama"} {
		p, err := ParseProvider(name)
		if err != nil {
			t.Errorf("ParseProvider(%q): %v", name, err)
		}
		if string(p) != name {
			t.Errorf("ParseProvider(%q) = %q", name, p)
		}
	}

	// No silent fallback: anything outside the closed enum is rejected.
	for _, name := range []string{"", "ollama", "digital ocean", "OpenAI", "Gemini"} {
		if _, err := ParseProvider(name); err == nil {
			t.Errorf("ParseProvider(%q): expected error", name)
		}
	}
}
