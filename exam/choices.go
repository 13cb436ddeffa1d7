package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Choice is one labeled answer option.
type Choice struct {
	Letter string
	Text   string
}

// Choices is an ordered letter→text mapping. Letters are unique and the
// slice order is the order in which they appeared in the source. It
// encodes as a JSON object with keys in that order.
type Choices []Choice

// Len returns the number of choices.
func (c Choices) Len() int { return len(c) }

// Get returns the text for letter.
func (c Choices) Get(letter string) (string, bool) {
	for _, ch := range c {
		if ch.Letter == letter {
			return ch.Text, true
		}
	}
	return "", false
}

// Has reports whether letter is a key.
func (c Choices) Has(letter string) bool {
	_, ok := c.Get(letter)
	return ok
}

// Letters returns the keys in order.
func (c Choices) Letters() []string {
	out := make([]string, len(c))
	for i, ch := range c {
		out[i] = ch.Letter
	}
	return out
}

// Set appends letter when it is new and reports false without changing
// anything when it already exists.
func (c *Choices) Set(letter, text string) bool {
	if c.Has(letter) {
		return false
	}
	*c = append(*c, Choice{Letter: letter, Text: text})
	return true
}

// Replace overwrites the text of an existing letter in place, keeping its
// position. It reports whether the letter existed.
func (c Choices) Replace(letter, text string) bool {
	for i := range c {
		if c[i].Letter == letter {
			c[i].Text = text
			return true
		}
	}
	return false
}

// MarshalJSON writes the choices as an object preserving order.
func (c Choices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ch := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ch.Letter)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ch.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping key order. null decodes to an
// empty mapping.
func (c *Choices) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = Choices{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("choices: expected object, got %v", tok)
	}
	out := Choices{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("choices: expected string key, got %v", kt)
		}
		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("choices: value for %q: %w", key, err)
		}
		if !out.Set(key, text) {
			return fmt.Errorf("choices: duplicate letter %q", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}
