package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Unknown or unsupported file. */
	ResourceTypeNone ResourceType = iota
	/** @brief Binary resource type. */
	ResourceTypeBinary
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Shader source resource type, compiled to SPIR-V on load. */
	ResourceTypeShader
)

func (rt ResourceType) String() string {
	switch rt {
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeShader:
		return "shader"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. *ImageResourceData for images, []uint32 SPIR-V words for shaders. */
	Data interface{}
}
