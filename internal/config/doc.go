// Package config provides the configuration of contactscan: defaults,
// validation and the optional .contactscan YAML file.
package config
