package vpp

import (
	"fmt"
	"strings"

	"go.fd.io/govpp/binapi/ip_types"
	"go.fd.io/govpp/binapi/punt"
)

const puntHeaderVersion = 1

// RegisterPuntSocket asks the fast path to punt the given IPv4 protocols to
// socketPath as unixgram datagrams.
func (v *VPP) RegisterPuntSocket(socketPath string, protocols ...uint8) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	for _, protocol := range protocols {
		req := &punt.PuntSocketRegister{
			HeaderVersion: puntHeaderVersion,
			Punt: punt.Punt{
				Type: punt.PUNT_API_TYPE_IP_PROTO,
				Punt: punt.PuntUnionIPProto(punt.PuntIPProto{
					Af:       ip_types.ADDRESS_IP4,
					Protocol: ip_types.IPProto(protocol),
				}),
			},
			Pathname: socketPath,
		}
		reply := &punt.PuntSocketRegisterReply{}
		if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
			return fmt.Errorf("register punt for ip proto %d: %w", protocol, err)
		}
		if reply.Retval != 0 {
			return fmt.Errorf("register punt for ip proto %d: retval %d", protocol, reply.Retval)
		}
	}
	return nil
}

// RegisterExceptionPunt registers an exception-path punt (ARP replies reach
// us this way) by punt reason name.
func (v *VPP) RegisterExceptionPunt(socketPath, reasonName string) error {
	ch, err := v.channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	reasonID, err := v.findPuntReason(reasonName)
	if err != nil {
		return err
	}

	req := &punt.PuntSocketRegister{
		HeaderVersion: puntHeaderVersion,
		Punt: punt.Punt{
			Type: punt.PUNT_API_TYPE_EXCEPTION,
			Punt: punt.PuntUnionException(punt.PuntException{ID: reasonID}),
		},
		Pathname: socketPath,
	}
	reply := &punt.PuntSocketRegisterReply{}
	if err := ch.SendRequest(req).ReceiveReply(reply); err != nil {
		return fmt.Errorf("register exception punt %s: %w", reasonName, err)
	}
	if reply.Retval != 0 {
		return fmt.Errorf("register exception punt %s: retval %d", reasonName, reply.Retval)
	}
	return nil
}

func (v *VPP) findPuntReason(name string) (uint32, error) {
	ch, err := v.channel()
	if err != nil {
		return 0, err
	}
	defer ch.Close()

	reqCtx := ch.SendMultiRequest(&punt.PuntReasonDump{})
	for {
		details := &punt.PuntReasonDetails{}
		stop, err := reqCtx.ReceiveReply(details)
		if err != nil {
			return 0, fmt.Errorf("dump punt reasons: %w", err)
		}
		if stop {
			break
		}
		if strings.Contains(details.Reason.Name, name) {
			return details.Reason.ID, nil
		}
	}
	return 0, fmt.Errorf("punt reason %q not found", name)
}
