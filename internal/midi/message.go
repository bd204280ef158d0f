// Package midi converts raw MIDI input into the channel-agnostic messages the
// synth consumes. Parsing is delegated to gitlab.com/gomidi/midi/v2.
package midi

import (
	"fmt"
	"math"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ControllerAllNotesOff is the channel mode controller that releases every
// sounding note.
const ControllerAllNotesOff = 123

// ControllerModWheel is the modulation wheel controller.
const ControllerModWheel = 1

type Kind int

const (
	KindNone Kind = iota
	KindNoteOn
	KindNoteOff
	KindControlChange
	KindAllNotesOff
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	case KindControlChange:
		return "ControlChange"
	case KindAllNotesOff:
		return "AllNotesOff"
	default:
		return "None"
	}
}

// Message is one note or controller event. Key is the note number for note
// messages and the controller number for ControlChange; Value is the
// velocity or controller value. Channel is carried for diagnostics only.
type Message struct {
	Kind    Kind
	Channel uint8
	Key     uint8
	Value   uint8
}

func NoteOn(note, velocity uint8) Message {
	return Message{Kind: KindNoteOn, Key: note & 0x7F, Value: velocity & 0x7F}
}

func NoteOff(note, velocity uint8) Message {
	return Message{Kind: KindNoteOff, Key: note & 0x7F, Value: velocity & 0x7F}
}

func ControlChange(controller, value uint8) Message {
	if controller == ControllerAllNotesOff {
		return AllNotesOff()
	}
	return Message{Kind: KindControlChange, Key: controller & 0x7F, Value: value & 0x7F}
}

func AllNotesOff() Message {
	return Message{Kind: KindAllNotesOff}
}

func (m Message) String() string {
	switch m.Kind {
	case KindNoteOn, KindNoteOff:
		return fmt.Sprintf("%s(note=%d, velocity=%d)", m.Kind, m.Key, m.Value)
	case KindControlChange:
		return fmt.Sprintf("%s(controller=%d, value=%d)", m.Kind, m.Key, m.Value)
	default:
		return m.Kind.String()
	}
}

// Decode parses one raw channel message. It reports false for anything the
// synth does not act on.
func Decode(raw []byte) (Message, bool) {
	if len(raw) < 3 {
		return Message{}, false
	}
	return FromGomidi(gomidi.Message(raw))
}

// FromGomidi converts a gomidi message. NoteOn with velocity 0 is a NoteOff.
func FromGomidi(msg gomidi.Message) (Message, bool) {
	var ch, key, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &val):
		m := NoteOn(key, val)
		m.Channel = ch
		return m, true
	case msg.GetNoteOff(&ch, &key, &val):
		m := NoteOff(key, val)
		m.Channel = ch
		return m, true
	case msg.GetNoteEnd(&ch, &key):
		m := NoteOff(key, 0)
		m.Channel = ch
		return m, true
	case msg.GetControlChange(&ch, &key, &val):
		m := ControlChange(key, val)
		m.Channel = ch
		return m, true
	}
	return Message{}, false
}

// Gomidi encodes m on its channel.
func (m Message) Gomidi() gomidi.Message {
	switch m.Kind {
	case KindNoteOn:
		return gomidi.NoteOn(m.Channel, m.Key, m.Value)
	case KindNoteOff:
		return gomidi.NoteOff(m.Channel, m.Key)
	case KindControlChange:
		return gomidi.ControlChange(m.Channel, m.Key, m.Value)
	case KindAllNotesOff:
		return gomidi.ControlChange(m.Channel, ControllerAllNotesOff, 0)
	}
	return nil
}

// NoteToHz converts a MIDI note number to its equal-tempered frequency with
// A4 (note 69) at 440 Hz.
func NoteToHz(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}
