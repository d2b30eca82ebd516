package shader

// Garment surface: base color times the optional map, lit by one
// directional key light plus ambient.
const (
	GarmentVertex = `#version 410 core
layout (location = 0) in vec3 aPosition;
layout (location = 1) in vec3 aNormal;
layout (location = 2) in vec2 aUV;

uniform mat4 uViewProj;
uniform mat4 uModel;

out vec3 vNormal;
out vec2 vUV;

void main() {
	vNormal = mat3(uModel) * aNormal;
	vUV = aUV;
	gl_Position = uViewProj * uModel * vec4(aPosition, 1.0);
}
`

	GarmentFragment = `#version 410 core
in vec3 vNormal;
in vec2 vUV;

uniform vec4 uBaseColor;
uniform bool uHasMap;
uniform sampler2D uMap;
uniform vec3 uLightDir;

out vec4 FragColor;

void main() {
	vec4 color = uBaseColor;
	if (uHasMap) {
		color *= texture(uMap, vec2(vUV.x, 1.0 - vUV.y));
	}
	float diffuse = abs(dot(normalize(vNormal), uLightDir));
	FragColor = vec4(color.rgb * (0.35 + 0.65 * diffuse), color.a);
}
`
)

// Textured quad used for billboards and the background image. The unit
// quad spans [-0.5,0.5]^2; uMVP places it.
const (
	QuadVertex = `#version 410 core
layout (location = 0) in vec2 aPosition;

uniform mat4 uMVP;

out vec2 vUV;

void main() {
	vUV = vec2(aPosition.x + 0.5, 0.5 - aPosition.y);
	gl_Position = uMVP * vec4(aPosition, 0.0, 1.0);
}
`

	QuadFragment = `#version 410 core
in vec2 vUV;

uniform sampler2D uTexture;

out vec4 FragColor;

void main() {
	vec4 c = texture(uTexture, vUV);
	if (c.a < 0.01) {
		discard;
	}
	FragColor = c;
}
`
)
