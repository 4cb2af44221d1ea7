package usecase

import "kidsnest-backend/internal/notification/repository"

// RegistryTokenSource adapts the device token registry to the push
// gateway client's fan-out interface.
type RegistryTokenSource struct {
	Tokens repository.DeviceTokenRepository
}

// ActiveTokens returns the recipient's active token strings, most
// recently used first.
func (s RegistryTokenSource) ActiveTokens(recipientID string) ([]string, error) {
	devices, err := s.Tokens.ActiveTokensFor(recipientID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(devices))
	for _, device := range devices {
		tokens = append(tokens, device.Token)
	}
	return tokens, nil
}
