package config

import "time"

const (
	TRACE_ID_KEY = "traceId"

	//ids of the redis databases, redis has 16 we can use
	RedisJobStore     = 0
	RedisMessageStore = 1
	RedisLLMCache     = 2

	//llm
	SummaryTemperature float32 = 0.5
	AnswerTemperature  float32 = 0.7
	SQLGenTemperature  float32 = 0

	//these come from the context windows of the two model tiers
	MaxFullDocumentTextLength = 20_000
	MaxChunkTextLength        = 1024 * 28
	MinLengthToSummarize      = 2048

	//tool description is built from at most this many chunks
	ToolDescriptionSampleSize = 100

	CacheSimilarityCutoff = 0.97

	//past question/answer exchanges fed back to the agent
	ChatHistoryLength = 5

	ShutdownContextTimeout = 10 * time.Second
)
