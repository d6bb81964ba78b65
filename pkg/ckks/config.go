package ckks

import (
	"strconv"

	log "github.com/sirupsen/logrus"
)

// RescalePolicy selects one of the four rescaler family members of §4.6.
type RescalePolicy int

const (
	LazyWaterline RescalePolicy = iota
	EagerWaterline
	Always
	Minimum
)

func (p RescalePolicy) String() string {
	switch p {
	case LazyWaterline:
		return "lazy_waterline"
	case EagerWaterline:
		return "eager_waterline"
	case Always:
		return "always"
	case Minimum:
		return "minimum"
	default:
		return "unknown"
	}
}

// optionsHelp mirrors the teacher-grounded original's OPTIONS_HELP_MESSAGE,
// printed in the unknown-option warning below.
const optionsHelp = "balance_reductions - Balance trees of mul, add or sub operations. bool (default=true)\n" +
	"rescaler           - Rescaling policy. One of: lazy_waterline (default), eager_waterline, always, minimum\n" +
	"lazy_relinearize   - Relinearize as late as possible. bool (default=true)\n" +
	"security_level     - How many bits of security parameters should be selected for. int (default=128)\n" +
	"quantum_safe       - Select quantum safe parameters. bool (default=false)\n" +
	"warn_vec_size      - Warn about possibly inefficient vector size selection. bool (default=true)"

// Config controls the compiler's behavior; see §6.3.
type Config struct {
	BalanceReductions bool
	Rescaler          RescalePolicy
	LazyRelinearize   bool
	SecurityLevel     uint32
	QuantumSafe       bool
	WarnVecSize       bool
}

// DefaultConfig returns the configuration with every option at its default
// (§6.3).
func DefaultConfig() Config {
	return Config{
		BalanceReductions: true,
		Rescaler:          LazyWaterline,
		LazyRelinearize:   true,
		SecurityLevel:     128,
		QuantumSafe:       false,
		WarnVecSize:       true,
	}
}

// ApplyOptions overlays a string-keyed option map onto a Config, following
// the teacher-grounded original's CKKSConfig(const unordered_map&)
// constructor. Unrecognized keys and unparsable values produce a
// log.Warn and are otherwise ignored (§7, category 2); config continues
// with its previous value for that option.
func ApplyOptions(cfg Config, options map[string]string) Config {
	for option, value := range options {
		switch option {
		case "balance_reductions":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.BalanceReductions = b
			} else {
				log.Warnf("could not parse boolean in balance_reductions=%s, falling back to default", value)
			}
		case "rescaler":
			switch value {
			case "lazy_waterline":
				cfg.Rescaler = LazyWaterline
			case "eager_waterline":
				cfg.Rescaler = EagerWaterline
			case "always":
				cfg.Rescaler = Always
			case "minimum":
				cfg.Rescaler = Minimum
			default:
				log.Warnf("unknown value rescaler=%s, available rescalers are lazy_waterline, eager_waterline, always, minimum; falling back to default", value)
			}
		case "lazy_relinearize":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.LazyRelinearize = b
			} else {
				log.Warnf("could not parse boolean in lazy_relinearize=%s, falling back to default", value)
			}
		case "security_level":
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				cfg.SecurityLevel = uint32(n)
			} else {
				log.Warnf("could not parse unsigned int in security_level=%s, falling back to default", value)
			}
		case "quantum_safe":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.QuantumSafe = b
			} else {
				log.Warnf("could not parse boolean in quantum_safe=%s, falling back to default", value)
			}
		case "warn_vec_size":
			if b, err := strconv.ParseBool(value); err == nil {
				cfg.WarnVecSize = b
			} else {
				log.Warnf("could not parse boolean in warn_vec_size=%s, falling back to default", value)
			}
		default:
			log.Warnf("unknown option %s. Available options are:\n%s", option, optionsHelp)
		}
	}
	return cfg
}
