package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE process_definitions (
				id VARCHAR(255) NOT NULL,
				version VARCHAR(255) NOT NULL,
				name VARCHAR(255),
				description TEXT,
				type VARCHAR(255),
				endpoint TEXT,
				source TEXT,
				roles TEXT[],
				addons TEXT[],
				annotations TEXT[],
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				PRIMARY KEY (id, version)
			);

			CREATE INDEX idx_process_definitions_id ON process_definitions(id);
		`,
		2: `
			-- Nodes are identified by their id scoped to the owning definition version
			CREATE TABLE definition_nodes (
				id VARCHAR(255) NOT NULL,
				process_id VARCHAR(255) NOT NULL,
				process_version VARCHAR(255) NOT NULL,
				name VARCHAR(255),
				unique_id VARCHAR(255),
				type VARCHAR(255) NOT NULL,
				metadata JSONB,
				position INT NOT NULL DEFAULT 0,
				PRIMARY KEY (id, process_id, process_version),
				FOREIGN KEY (process_id, process_version)
					REFERENCES process_definitions(id, version) ON DELETE CASCADE
			);

			CREATE INDEX idx_definition_nodes_process ON definition_nodes(process_id, process_version);
			CREATE INDEX idx_definition_nodes_type ON definition_nodes(type);
		`,
	}
}
