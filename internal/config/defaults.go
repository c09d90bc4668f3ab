package config

const dataDir = "/usr/local/var/henkan/data"

// ApplyDefaults sets default values for any zero values in cfg.
// Values mirror the dataset and trainer defaults of the henkan packages.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxRequestBytes == 0 {
		cfg.Server.MaxRequestBytes = 1 << 10
	}
	if cfg.Corpus.Path == "" {
		cfg.Corpus.Path = dataDir + "/corpus/corpus.txt"
	}
	if cfg.Corpus.MaxTokens == 0 {
		cfg.Corpus.MaxTokens = 28
	}
	if cfg.Corpus.QuestionLimit == 0 {
		cfg.Corpus.QuestionLimit = 2000
	}
	if cfg.Vocabulary.Path == "" {
		cfg.Vocabulary.Path = dataDir + "/vocabulary/vectors.bin"
	}
	if cfg.Vocabulary.ListingPath == "" {
		cfg.Vocabulary.ListingPath = dataDir + "/vocabulary/vocabulary.txt"
	}
	if cfg.Vocabulary.NeighborsPath == "" {
		cfg.Vocabulary.NeighborsPath = dataDir + "/vocabulary/neighbors.txt"
	}
	if cfg.Vocabulary.Neighbors == 0 {
		cfg.Vocabulary.Neighbors = 4
	}
	if cfg.Vocabulary.Trainer == "" {
		cfg.Vocabulary.Trainer = "cooccurrence"
	}
	if cfg.Vocabulary.VectorSize == 0 {
		cfg.Vocabulary.VectorSize = 500
	}
	if cfg.Vocabulary.Window == 0 {
		cfg.Vocabulary.Window = 5
	}
	if cfg.Vocabulary.Epochs == 0 {
		cfg.Vocabulary.Epochs = 5
	}
	if cfg.Vocabulary.MinCount == 0 {
		cfg.Vocabulary.MinCount = 1
	}
	if cfg.Vocabulary.Seed == 0 {
		cfg.Vocabulary.Seed = 1
	}
	if cfg.Encoding.Filler == "" {
		cfg.Encoding.Filler = "in-place"
	}
	if cfg.Encoding.Workers == 0 {
		cfg.Encoding.Workers = 4
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = dataDir + "/db/corpora.db"
	}
	if cfg.Storage.EncodedBackend == "" {
		cfg.Storage.EncodedBackend = "file"
	}
	if cfg.Storage.EncodedPath == "" {
		cfg.Storage.EncodedPath = dataDir + "/encoded/corpus.hnke"
	}
	if cfg.Storage.QuestionIndexPath == "" {
		cfg.Storage.QuestionIndexPath = dataDir + "/indices/questions.bleve"
	}
	if cfg.Model.Kind == "" {
		cfg.Model.Kind = "retrieval"
	}
	if cfg.Model.CacheSize == 0 {
		cfg.Model.CacheSize = 256
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
