package assets

import "github.com/spaghettifunk/anima-quad/engine/renderer/metadata"

type Loader interface {
	// params is loader specific, e.g. *metadata.ImageResourceParams.
	Load(path string, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
