package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *PxBuildError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *PxBuildError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration invalid").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *PxBuildError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Bundling pass errors

func ResolveFailed(importPath, importer string, cause error) *PxBuildError {
	return Wrap(cause, CategoryResolve, SeverityFatal, "import could not be resolved").
		WithContext("import", importPath).
		WithContext("importer", importer)
}

func TransformFailed(unit string, cause error) *PxBuildError {
	return Wrap(cause, CategoryTransform, SeverityFatal, "transform failed").
		WithContext("unit", unit)
}

func InvariantViolated(message string) *PxBuildError {
	return New(CategoryInvariant, SeverityFatal, message)
}

// Persistence errors

func SinkWriteFailed(path string, cause error) *PxBuildError {
	return Wrap(cause, CategorySink, SeverityError, "artifact could not be persisted").
		WithContext("path", path)
}

func NetworkFailed(target string, cause error) *PxBuildError {
	return Wrap(cause, CategoryNetwork, SeverityWarning, "network operation failed").
		WithContext("target", target)
}

func StorageFailed(operation string, cause error) *PxBuildError {
	return Wrap(cause, CategoryStorage, SeverityError, "storage operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *PxBuildError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
