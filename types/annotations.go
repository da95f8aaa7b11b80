package types

const (
	// AnnotRefName is the annotation key for the tag, set on a descriptor in the OCI Layout index.json.
	AnnotRefName = "org.opencontainers.image.ref.name"
	// AnnotTitle is the annotation key for the human readable title of a blob, typically the source file name.
	AnnotTitle = "org.opencontainers.image.title"
	// AnnotCreated is the annotation key for the date and time on which the artifact was built (RFC 3339).
	AnnotCreated = "org.opencontainers.image.created"
)
