package storage

import "io"

// BlobStore holds raw reference-document bytes. The engine writes them
// once at upload and only ever reads them back for text extraction, so
// the surface is deliberately just Put and Get.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
}
