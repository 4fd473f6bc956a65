package errors

func InvalidPath(err error, path string) error {
	return newError(err, "'%s'", path)
}

func PathNotExist(err error, path string) error {
	return newError(err, "'%s'", path)
}

func PathExist(err error, path string) error {
	return newError(err, "'%s'", path)
}

func UnknownClass(err error, classID, path string) error {
	return newError(err, "class '%s' of '%s'", classID, path)
}
