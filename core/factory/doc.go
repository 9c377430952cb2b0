// Package factory instantiates pluggable modules (event transports, metrics
// sinks, map surfaces) from configuration. A module is a type name plus a
// map of raw settings; the registered factory decodes the settings and
// returns the implementation.
//
//	reg := factory.NewRegistry[channel.Channel]()
//	_ = reg.Register("mqtt", func(conf map[string]any) (channel.Channel, error) {
//	    var c mqtt.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newMQTTChannel(c)
//	})
//	ch, err := reg.Create(factory.ModuleConfig{Type: "mqtt", Conf: raw})
package factory
