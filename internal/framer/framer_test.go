package framer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/tokenizer"
)

func TestDetermineLength(t *testing.T) {
	tests := []struct {
		name  string
		pairs []models.Pair
		want  int
	}{
		{"empty", nil, 0},
		{"question longest", []models.Pair{
			{Question: []string{"a", "b", "c"}, Answer: []string{"x"}},
			{Question: []string{"a"}, Answer: []string{"x", "y"}},
		}, 5},
		{"answer longest", []models.Pair{
			{Question: []string{"a"}, Answer: []string{"x", "y", "z", "w"}},
		}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineLength(tt.pairs); got != tt.want {
				t.Errorf("DetermineLength() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFrameQuestion(t *testing.T) {
	tokens := tokenizer.Clean(models.SideQuestion, "Зачем нужен этот класс?")
	frame, err := FrameQuestion(tokens, 7)
	if err != nil {
		t.Fatalf("FrameQuestion: %v", err)
	}
	want := []string{models.TokenPad, models.TokenPad, "класс", "этот", "нужен", "зачем", models.TokenGo}
	if !reflect.DeepEqual(frame, want) {
		t.Errorf("frame = %v, want %v", frame, want)
	}
}

func TestFrameQuestion_properties(t *testing.T) {
	cases := [][]string{
		nil,
		{"один"},
		{"раз", "два", "три"},
		{"a", "b", "c", "d", "e", "f"},
	}
	const length = 8
	for _, tokens := range cases {
		frame, err := FrameQuestion(tokens, length)
		if err != nil {
			t.Fatalf("FrameQuestion(%v): %v", tokens, err)
		}
		if len(frame) != length {
			t.Errorf("len = %d, want %d", len(frame), length)
		}
		if frame[length-1] != models.TokenGo {
			t.Errorf("last = %q, want <GO>", frame[length-1])
		}
		suffix := frame[length-1-len(tokens) : length-1]
		if !reflect.DeepEqual(suffix, tokenizer.Reverse(tokens)) {
			t.Errorf("suffix = %v, want reversed %v", suffix, tokens)
		}
		for _, tok := range frame[:length-1-len(tokens)] {
			if tok != models.TokenPad {
				t.Errorf("prefix holds %q, want only <PAD>", tok)
			}
		}
	}
}

func TestFrameAnswer_properties(t *testing.T) {
	cases := [][]string{
		nil,
		{"для", "подготовки", "данных"},
		{"a", "b", "c", "d", "e", "f"},
	}
	const length = 8
	for _, tokens := range cases {
		frame, err := FrameAnswer(tokens, length)
		if err != nil {
			t.Fatalf("FrameAnswer(%v): %v", tokens, err)
		}
		if len(frame) != length {
			t.Errorf("len = %d, want %d", len(frame), length)
		}
		if len(tokens) > 0 && !reflect.DeepEqual(frame[:len(tokens)], tokens) {
			t.Errorf("content = %v, want %v", frame[:len(tokens)], tokens)
		}
		eos := 0
		for _, tok := range frame {
			if tok == models.TokenEOS {
				eos++
			}
		}
		if eos != 1 || frame[len(tokens)] != models.TokenEOS {
			t.Errorf("frame %v: want exactly one <EOS> right after content", frame)
		}
		for _, tok := range frame[len(tokens)+1:] {
			if tok != models.TokenPad {
				t.Errorf("tail holds %q, want only <PAD>", tok)
			}
		}
	}
}

func TestFrame_oversize(t *testing.T) {
	tokens := []string{"a", "b", "c", "d"}
	_, err := FrameQuestion(tokens, 5)
	if !errors.Is(err, ErrOversizeSequence) {
		t.Fatalf("FrameQuestion err = %v, want ErrOversizeSequence", err)
	}
	var oe *OversizeSequenceError
	if !errors.As(err, &oe) || oe.Tokens != 4 || oe.Length != 5 {
		t.Errorf("err = %#v", err)
	}
	if _, err := FrameAnswer(tokens, 5); !errors.Is(err, ErrOversizeSequence) {
		t.Errorf("FrameAnswer err = %v, want ErrOversizeSequence", err)
	}
	if _, err := FrameAnswer(tokens, 6); err != nil {
		t.Errorf("exact fit: %v", err)
	}
}

func TestFramePair_corpusLength(t *testing.T) {
	pairs := []models.Pair{
		{Question: []string{"как", "дела"}, Answer: []string{"хорошо", ",", "спасибо"}},
		{Question: []string{"привет"}, Answer: []string{"привет"}},
	}
	length := DetermineLength(pairs)
	for _, p := range pairs {
		fp, err := FramePair(p, length)
		if err != nil {
			t.Fatalf("FramePair: %v", err)
		}
		if len(fp.Question) != length || len(fp.Answer) != length {
			t.Errorf("frame lengths %d/%d, want %d", len(fp.Question), len(fp.Answer), length)
		}
		if !reflect.DeepEqual(Content(fp.Answer), p.Answer) {
			t.Errorf("answer content = %v, want %v", Content(fp.Answer), p.Answer)
		}
	}
}
