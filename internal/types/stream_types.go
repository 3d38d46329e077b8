package types

// ChunkSource 模型输出的增量文本流。
// Recv 在流正常结束时返回 io.EOF，其他错误表示上游失败。
type ChunkSource interface {
	Recv() (string, error)
	Close()
}
