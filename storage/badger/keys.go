package badger

// documentPrefix namespaces document records. Nothing else is stored yet,
// but the prefix keeps DropPrefix and iteration scoped.
const documentPrefix = "doc:"

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id string) []byte {
	return []byte(documentPrefix + id)
}

// documentID strips the prefix from a document key.
func documentID(key []byte) string {
	return string(key[len(documentPrefix):])
}
