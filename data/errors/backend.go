package errors

func BackendUnsupported(err error, name string) error {
	return newError(err, "backend capability unsupported for '%s'", name)
}

func BlobTooLarge(err error, hash string, size, limit int64) error {
	return newError(err, "blob '%s' has %d bytes, limit is %d", hash, size, limit)
}
