package types

import "strings"

const (
	// MediaTypeDocker2Manifest is the media type when pulling manifests from a v2 registry.
	MediaTypeDocker2Manifest = "application/vnd.docker.distribution.manifest.v2+json"
	// MediaTypeDocker2ManifestList is the media type when pulling a manifest list from a v2 registry.
	MediaTypeDocker2ManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	// MediaTypeOCI1Manifest OCI v1 manifest media type.
	MediaTypeOCI1Manifest = "application/vnd.oci.image.manifest.v1+json"
	// MediaTypeOCI1ManifestList OCI v1 manifest list media type.
	MediaTypeOCI1ManifestList = "application/vnd.oci.image.index.v1+json"
	// MediaTypeOCI1Empty is the empty JSON blob used when a manifest has no meaningful config.
	MediaTypeOCI1Empty = "application/vnd.oci.empty.v1+json"
)

const (
	// MediaTypeBundleTar is an uncompressed tar of every payload.
	MediaTypeBundleTar = "application/vnd.ocipack.bundle.v1.tar"
	// MediaTypeBundleTarGzip is a gzip compressed tar of every payload.
	MediaTypeBundleTarGzip = "application/vnd.ocipack.bundle.v1.tar+gzip"
	// MediaTypeBundleTarZstd is a zstd compressed tar of every payload.
	MediaTypeBundleTarZstd = "application/vnd.ocipack.bundle.v1.tar+zstd"
	// MediaTypeItem is a single payload stored as its own blob.
	MediaTypeItem = "application/vnd.ocipack.item.v1"
	// MediaTypeSubmoduleJSON is a single submodule record encoded as JSON.
	MediaTypeSubmoduleJSON = "application/vnd.ocipack.submodule.v1+json"
	// MediaTypeSubmoduleCBOR is a single submodule record encoded as CBOR.
	MediaTypeSubmoduleCBOR = "application/vnd.ocipack.submodule.v1+cbor"
	// ArtifactTypeDefault is used when the caller does not declare an artifact type.
	ArtifactTypeDefault = "application/vnd.ocipack.artifact.v1"
)

// MediaTypeBase cleans the Content-Type header to return only the lower case base media type.
func MediaTypeBase(orig string) string {
	base, _, _ := strings.Cut(orig, ";")
	return strings.TrimSpace(strings.ToLower(base))
}

// MediaTypeIndex returns true if the media type is an Index/ManifestList.
func MediaTypeIndex(mt string) bool {
	switch mt {
	case MediaTypeDocker2ManifestList, MediaTypeOCI1ManifestList:
		return true
	}
	return false
}

// MediaTypeImage returns true if the media type is an Image Manifest.
func MediaTypeImage(mt string) bool {
	switch mt {
	case MediaTypeDocker2Manifest, MediaTypeOCI1Manifest:
		return true
	}
	return false
}

// MediaTypeBundle returns true if the media type is one of the combined bundle types.
func MediaTypeBundle(mt string) bool {
	switch mt {
	case MediaTypeBundleTar, MediaTypeBundleTarGzip, MediaTypeBundleTarZstd:
		return true
	}
	return false
}
