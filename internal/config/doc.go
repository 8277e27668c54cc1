// Package config loads everything a detection run is configured from:
// process settings (viper: defaults, optional YAML file, MEGABONK_VISION_*
// environment variables and command-line flags, in increasing priority),
// the game UI profile with the rarity border colours and resolution tiers,
// and the entity catalogue with its icon templates.
//
// Nothing here is read from globals by the detection packages; the
// command wires the loaded values into a pipeline.Detector explicitly.
package config
