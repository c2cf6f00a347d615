package metadata

/** @brief Parameters used when loading a shader. */
type ShaderResourceParams struct {
	/** @brief The GLSL to SPIR-V compiler executable, glslc by default. */
	Compiler string
}

func DefaultShaderParams() ShaderResourceParams {
	return ShaderResourceParams{Compiler: "glslc"}
}
