// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package app

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/queue"
)

// QueueFileType is the registration of the queue wrapper. One instance
// per named queue lives under "_queue" so nodes reach their ambient
// queue with ResolveUpward("_queue/<name>").
var QueueFileType *file.TypeInfo

func init() {
	QueueFileType = file.Register(&file.TypeInfo{
		Name: "SystemQueue",
		Desc: "ambient task queue",
		Tags: []string{"DirItem", "Queue"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			name, err := dec.DecodeString()
			if err != nil {
				return nil, file.Deserializef(err, "broken queue name")
			}
			q := env.Queues.Lookup(name)
			if q == nil {
				return nil, file.Deserializef(nil, "unknown queue name: %s", name)
			}
			return NewQueueFile(name, q), nil
		},
	})
}

// QueueFile exposes one queue of the environment set as a File.
type QueueFile struct {
	file.Base
	name string
	q    *queue.Queue
}

var _ file.QueueHolder = (*QueueFile)(nil)

func NewQueueFile(name string, q *queue.Queue) *QueueFile {
	return &QueueFile{Base: file.NewBase(QueueFileType), name: name, q: q}
}

func (f *QueueFile) TaskQueue() *queue.Queue { return f.q }

func (f *QueueFile) Serialize(enc *msgpack.Encoder) error {
	return enc.EncodeString(f.name)
}

func (f *QueueFile) Clone(env *file.Env) (file.File, error) {
	return NewQueueFile(f.name, env.Queues.Lookup(f.name)), nil
}
