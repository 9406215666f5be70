package main

import "time"

type Config struct {
	BufferSize        int           `env:"BUFFER_SIZE,default=64"`
	SessionBufferSize int           `env:"SESSION_BUFFER_SIZE,default=16"`
	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,default=2s"`
	TimelineLimit     int           `env:"TIMELINE_LIMIT,default=50"`
	DataFilepath      string        `env:"DATA_FILEPATH,default=rooms-data.json"`
	// Optional features stay off when their path is unset
	BadgerFilepath   *string `env:"BADGER_FILEPATH"`
	CensoredFilepath *string `env:"CENSORED_FILEPATH"`
	CensoredMask     rune    `env:"CENSORED_MASK,default=42"`
	LogLevel         string  `env:"LOG_LEVEL,default=info"`
	Host             string  `env:"HOST,default=localhost"`
	Port             int     `env:"PORT,default=8080"`
}
