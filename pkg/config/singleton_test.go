package config

import "testing"

func TestSetGetConfig(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })

	cfg := &Config{}
	ApplyDefaults(cfg)
	SetConfig(cfg)

	if GetConfig() != cfg {
		t.Fatal("GetConfig() did not return the stored configuration")
	}
	if MustGetConfig() != cfg {
		t.Fatal("MustGetConfig() did not return the stored configuration")
	}
}

func TestMustGetConfig_PanicsWhenUnset(t *testing.T) {
	prev := GetConfig()
	t.Cleanup(func() { SetConfig(prev) })
	SetConfig(nil)

	defer func() {
		if recover() == nil {
			t.Error("MustGetConfig() should panic without configuration")
		}
	}()
	MustGetConfig()
}
