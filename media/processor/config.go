package processor

// Quality is the fixed JPEG quality of the encoder.
const Quality = 90

// Config tunes decode bounds and effect parameters.
type Config struct {
	// MaxWidth and MaxHeight cap the decoded buffer.
	MaxWidth  int `mapstructure:"max-width" json:"maxWidth" yaml:"max-width" default:"4096" validate:"gt=0"`
	MaxHeight int `mapstructure:"max-height" json:"maxHeight" yaml:"max-height" default:"4096" validate:"gt=0"`

	// MaxSourcePixels rejects sources whose declared size is larger, before
	// any pixel data is decoded.
	MaxSourcePixels int64 `mapstructure:"max-source-pixels" json:"maxSourcePixels" yaml:"max-source-pixels" default:"268435456" validate:"gt=0"`

	// BlurSigma is the Gaussian sigma of the blur effect.
	BlurSigma float64 `mapstructure:"blur-sigma" json:"blurSigma" yaml:"blur-sigma" default:"3" validate:"gt=0"`

	// VignetteStrength is the darkening at the corners (0..1).
	VignetteStrength float64 `mapstructure:"vignette-strength" json:"vignetteStrength" yaml:"vignette-strength" default:"0.6" validate:"gt=0,lte=1"`

	// VignetteInner is the relative radius where darkening starts (0..1).
	VignetteInner float64 `mapstructure:"vignette-inner" json:"vignetteInner" yaml:"vignette-inner" default:"0.4" validate:"gte=0,lt=1"`
}

// DefaultConfig returns the stock limits: a 4096px cap and mild effects.
func DefaultConfig() Config {
	return Config{
		MaxWidth:         4096,
		MaxHeight:        4096,
		MaxSourcePixels:  1 << 28,
		BlurSigma:        3,
		VignetteStrength: 0.6,
		VignetteInner:    0.4,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxWidth <= 0 {
		c.MaxWidth = d.MaxWidth
	}
	if c.MaxHeight <= 0 {
		c.MaxHeight = d.MaxHeight
	}
	if c.MaxSourcePixels <= 0 {
		c.MaxSourcePixels = d.MaxSourcePixels
	}
	if c.BlurSigma <= 0 {
		c.BlurSigma = d.BlurSigma
	}
	if c.VignetteStrength <= 0 {
		c.VignetteStrength = d.VignetteStrength
	}
	if c.VignetteInner < 0 || c.VignetteInner >= 1 {
		c.VignetteInner = d.VignetteInner
	}
}
