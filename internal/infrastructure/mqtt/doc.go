// Package mqtt provides MQTT connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Device state publishing on "{prefix}/{address}"
//   - The command subscription on "{prefix}/+/set"
//   - Last Will and Testament (LWT) on "{prefix}/bridge/status"
//
// # Connections
//
// The bridge holds two broker sessions. The publishing connection (Connect)
// uses the configured client ID and owns the status topic. The subscriber
// connection (ConnectSubscriber) appends "_sub" to the client ID so a slow
// command handler never delays state publishing.
//
//	poll loop → Sink → broker → consumers
//	operators → broker → CommandSource → monitor.Service.HandleCommand
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) outside a closed plant network
//   - Supply broker credentials through PLCBRIDGE_MQTT_USERNAME/PASSWORD
//
// # Usage
//
//	pub, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	sink := mqtt.NewSink(pub)
//	defer sink.Close()
//
//	sub, err := mqtt.ConnectSubscriber(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	src, err := mqtt.SubscribeCommands(sub, func(topic string, payload []byte) error {
//	    return svc.HandleCommand(mqtt.BusName, topic, payload)
//	})
package mqtt
