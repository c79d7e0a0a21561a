package processor

import (
	"fmt"

	"github.com/creasty/defaults"
	validatorV10 "github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	apperrors "github.com/leeforge/imagepipe/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validatorV10.New()

// filterJSON is the wire form of one filter.
type filterJSON struct {
	Type string `json:"type" validate:"required,oneof=resize rotate crop color_adjust effect"`

	MaxWidth  int `json:"max_width,omitempty" validate:"required_if=Type resize,gte=0"`
	MaxHeight int `json:"max_height,omitempty" validate:"required_if=Type resize,gte=0"`

	Degrees *float64 `json:"degrees,omitempty" validate:"required_if=Type rotate"`

	Rect *rectJSON `json:"rect,omitempty" validate:"required_if=Type crop"`

	Brightness *float64 `json:"brightness,omitempty"`
	Contrast   *float64 `json:"contrast,omitempty" default:"1"`
	Saturation *float64 `json:"saturation,omitempty" default:"1"`

	Effect string `json:"effect,omitempty" validate:"required_if=Type effect"`
}

type rectJSON struct {
	Left   float64 `json:"left" validate:"gte=0,lte=1"`
	Top    float64 `json:"top" validate:"gte=0,lte=1"`
	Right  float64 `json:"right" validate:"gte=0,lte=1"`
	Bottom float64 `json:"bottom" validate:"gte=0,lte=1"`
}

// DecodeChain parses a JSON array of filters, e.g.
//
//	[{"type":"resize","max_width":1024,"max_height":1024},{"type":"rotate","degrees":90}]
//
// Omitted contrast and saturation default to 1.
func DecodeChain(data []byte) (FilterChain, error) {
	var raws []jsoniter.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, "filter chain is not a JSON array")
	}

	chain := make(FilterChain, 0, len(raws))
	for i, raw := range raws {
		var fj filterJSON
		if err := defaults.Set(&fj); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInternal, "filter defaults")
		}
		if err := json.Unmarshal(raw, &fj); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, fmt.Sprintf("filter %d", i))
		}
		if err := validate.Struct(&fj); err != nil {
			return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeInvalid, fmt.Sprintf("filter %d (%s)", i, fj.Type))
		}
		f, err := fj.filter()
		if err != nil {
			return nil, err
		}
		chain = append(chain, f)
	}
	return chain, nil
}

func (fj filterJSON) filter() (Filter, error) {
	switch FilterKind(fj.Type) {
	case KindResize:
		return Resize{MaxWidth: fj.MaxWidth, MaxHeight: fj.MaxHeight}, nil
	case KindRotate:
		return Rotate{Degrees: *fj.Degrees}, nil
	case KindCrop:
		return Crop{Rect: NormalizedRect{
			Left:   fj.Rect.Left,
			Top:    fj.Rect.Top,
			Right:  fj.Rect.Right,
			Bottom: fj.Rect.Bottom,
		}}, nil
	case KindColorAdjust:
		return ColorAdjust{
			Brightness: valueOr(fj.Brightness, 0),
			Contrast:   valueOr(fj.Contrast, 1),
			Saturation: valueOr(fj.Saturation, 1),
		}, nil
	case KindEffect:
		kind, err := ParseEffectKind(fj.Effect)
		if err != nil {
			return nil, err
		}
		return Effect{Kind: kind}, nil
	}
	return nil, apperrors.NewInvalid("type", fj.Type, "unknown filter type")
}

// EncodeChain is the inverse of DecodeChain.
func EncodeChain(chain FilterChain) ([]byte, error) {
	out := make([]filterJSON, 0, len(chain))
	for _, f := range chain {
		var fj filterJSON
		switch f := f.(type) {
		case Resize:
			fj = filterJSON{MaxWidth: f.MaxWidth, MaxHeight: f.MaxHeight}
		case Rotate:
			deg := f.Degrees
			fj = filterJSON{Degrees: &deg}
		case Crop:
			fj = filterJSON{Rect: &rectJSON{Left: f.Rect.Left, Top: f.Rect.Top, Right: f.Rect.Right, Bottom: f.Rect.Bottom}}
		case ColorAdjust:
			b, c, s := f.Brightness, f.Contrast, f.Saturation
			fj = filterJSON{Brightness: &b, Contrast: &c, Saturation: &s}
		case Effect:
			fj = filterJSON{Effect: f.Kind.String()}
		default:
			return nil, apperrors.New(apperrors.ErrorTypeInvalid, fmt.Sprintf("cannot encode filter %T", f)).
				WithCode(apperrors.CodeUnknownFilter)
		}
		fj.Type = string(f.Kind())
		out = append(out, fj)
	}
	return json.Marshal(out)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
