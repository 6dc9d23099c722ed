// Package vectorindex stores post embeddings for similarity search.
//
// OpenSearch keeps one document per post id in a k-NN index, so writing the same
// post twice overwrites the previous vector. Log only records the call and is
// used when no search cluster is configured.
package vectorindex
