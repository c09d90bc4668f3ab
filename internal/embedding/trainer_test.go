package embedding

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hyperjump/henkan/internal/models"
)

var sentences = [][]string{
	{models.TokenPad, models.TokenPad, "класс", "этот", "нужен", "зачем", models.TokenGo},
	{"для", "подготовки", "данных", models.TokenEOS, models.TokenPad, models.TokenPad, models.TokenPad},
	{models.TokenPad, models.TokenPad, models.TokenPad, models.TokenPad, "дела", "как", models.TokenGo},
	{"хорошо", ",", "спасибо", models.TokenEOS, models.TokenPad, models.TokenPad, models.TokenPad},
}

func trainers() map[string]Trainer {
	return map[string]Trainer{
		"cooccurrence": NewCooccurrenceTrainer(),
		"hash":         NewHashTrainer(),
	}
}

func TestTrain_selfNearest(t *testing.T) {
	params := Params{VectorSize: 32, Window: 2, Epochs: 3, MinCount: 1, Seed: 7}
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			v, err := tr.Train(context.Background(), sentences, params)
			if err != nil {
				t.Fatalf("Train: %v", err)
			}
			if v.Dimensions() != 32 {
				t.Errorf("dimensions = %d, want 32", v.Dimensions())
			}
			for _, s := range sentences {
				for _, tok := range s {
					if !v.Has(tok) {
						t.Errorf("token %q missing", tok)
					}
				}
			}
			for _, tok := range v.Tokens() {
				vec, _ := v.Vector(tok)
				if got := v.Nearest(vec); got != tok {
					t.Errorf("Nearest(%q) = %q", tok, got)
				}
			}
		})
	}
}

func TestTrain_deterministic(t *testing.T) {
	params := Params{VectorSize: 16, Window: 3, Epochs: 2, Seed: 3}
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			a, err := tr.Train(context.Background(), sentences, params)
			if err != nil {
				t.Fatal(err)
			}
			b, err := tr.Train(context.Background(), sentences, params)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(a.Tokens(), b.Tokens()) {
				t.Fatalf("token order differs: %v vs %v", a.Tokens(), b.Tokens())
			}
			for _, tok := range a.Tokens() {
				va, _ := a.Vector(tok)
				vb, _ := b.Vector(tok)
				if !reflect.DeepEqual(va, vb) {
					t.Errorf("vector of %q differs between runs", tok)
				}
			}
		})
	}
}

func TestTrain_minCountAndOrder(t *testing.T) {
	v, err := NewHashTrainer().Train(context.Background(), sentences, Params{VectorSize: 8, MinCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	tokens := v.Tokens()
	if len(tokens) == 0 || tokens[0] != models.TokenPad {
		t.Errorf("most frequent token should come first, got %v", tokens)
	}
	if v.Has("класс") {
		t.Error("singleton token kept despite MinCount 2")
	}
	if !v.Has(models.TokenEOS) || !v.Has(models.TokenGo) {
		t.Error("control tokens seen twice should be kept")
	}
}

func TestCooccurrenceTrainer_contextPullsNeighbours(t *testing.T) {
	params := Params{VectorSize: 64, Window: 1, Epochs: 5, Seed: 11}
	corpus := [][]string{
		{"кот", "мяукает"}, {"кот", "мяукает"}, {"кот", "мяукает"},
		{"пес", "лает"}, {"пес", "лает"}, {"пес", "лает"},
	}
	trained, err := NewCooccurrenceTrainer().Train(context.Background(), corpus, params)
	if err != nil {
		t.Fatal(err)
	}
	hashed, err := NewHashTrainer().Train(context.Background(), corpus, params)
	if err != nil {
		t.Fatal(err)
	}
	sim := func(n []models.Neighbor, token string) float64 {
		for _, x := range n {
			if x.Token == token {
				return x.Similarity
			}
		}
		return 0
	}
	tn, _ := trained.MostSimilar("кот", 3)
	hn, _ := hashed.MostSimilar("кот", 3)
	if sim(tn, "мяукает") <= sim(hn, "мяукает") {
		t.Errorf("context did not pull кот towards мяукает: trained %v, hashed %v", tn, hn)
	}
}

func TestTrain_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, tr := range trainers() {
		t.Run(name, func(t *testing.T) {
			if _, err := tr.Train(ctx, sentences, Params{VectorSize: 8}); !errors.Is(err, context.Canceled) {
				t.Errorf("err = %v, want context.Canceled", err)
			}
		})
	}
}

func TestTokenSeed(t *testing.T) {
	if TokenSeed("а", 1) != TokenSeed("а", 1) {
		t.Error("seed not stable")
	}
	if TokenSeed("а", 1) == TokenSeed("б", 1) || TokenSeed("а", 1) == TokenSeed("а", 2) {
		t.Error("seed collision")
	}
}
