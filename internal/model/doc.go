// Package model holds the client's point-in-time view of bot state.
//
// A Model keeps, per message category, the most recent Message received.
// Fold applies one message; arrival order wins, so a later message with an
// older server timestamp still replaces the stored one.
//
//	m := model.New()
//	for _, msg := range burst {
//	    m.Fold(msg)
//	}
//	snap := m.Snapshot()
//
// Snapshot copies the containers so the copy can be handed to another
// goroutine while folding continues. The Messages themselves are shared;
// they are not modified after dispatch.
//
// The JSON form of a Model uses snake_case keys:
//
//	{"flyer": ..., "winches": [...], "gimbal_values": {"0": {"1": ...}},
//	 "gimbal_status": ..., "camera": {"object_detection": ...,
//	 "region_tracking": ..., "outputs": ...}, "config": ...}
package model
