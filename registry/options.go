package registry

import (
	"github.com/mitchellh/mapstructure"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// DecodeOptions decodes loose key/value options into result (a pointer to
// a typed config struct), the same mapstructure.NewDecoder/ErrorUnused
// idiom kapacitor's alert service uses to reject unknown keys when a
// typed config is expected (spec §4.8).
func DecodeOptions(options map[string]interface{}, result interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      result,
	})
	if err != nil {
		return sdkerr.WrapConfig(err, "failed to initialize options decoder")
	}
	if err := dec.Decode(options); err != nil {
		return sdkerr.WrapConfig(err, "failed to decode options into %T", result)
	}
	return nil
}
